package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-co-op/gocron/v2"
	"google.golang.org/protobuf/types/known/structpb"

	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
	idspkg "github.com/drblury/routeflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/routeflow/internal/runtime/metadata"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// Schedule registers job with the scheduler. Jobs added before Start begin
// firing once Start runs; jobs added afterwards start immediately. A job
// that is still publishing when its next run is due skips that run.
func (s *Service) Schedule(job configpkg.ScheduledJob) error {
	if err := job.Validate(); err != nil {
		return errspkg.NewConfigValidationError(err)
	}

	var definition gocron.JobDefinition
	if job.Cron != "" {
		definition = gocron.CronJob(job.Cron, false)
	} else {
		definition = gocron.DurationJob(job.Interval)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return errspkg.NewConfigValidationError(fmt.Errorf("scheduled job %q already registered", job.Name))
		}
	}

	_, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(func() {
			if err := s.fireJob(context.Background(), job); err != nil {
				s.Logger.Error("Scheduled job failed", err, loggingpkg.LogFields{
					"job":   job.Name,
					"topic": job.Topic,
				})
			}
		}),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", job.Name, err)
	}

	s.jobs = append(s.jobs, job)
	s.Logger.Info("Scheduled job registered", loggingpkg.LogFields{
		"job":      job.Name,
		"topic":    job.Topic,
		"cron":     job.Cron,
		"interval": job.Interval.String(),
	})
	return nil
}

// ScheduledJobs returns the registered jobs with their next run time. The
// next run is zero until the scheduler has started.
func (s *Service) ScheduledJobs() []ScheduledJobStatus {
	byName := make(map[string]time.Time)
	for _, j := range s.scheduler.Jobs() {
		if next, err := j.NextRun(); err == nil {
			byName[j.Name()] = next
		}
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	out := make([]ScheduledJobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, ScheduledJobStatus{
			Name:    job.Name,
			Topic:   job.Topic,
			NextRun: byName[job.Name],
		})
	}
	return out
}

// ScheduledJobStatus reports a registered job.
type ScheduledJobStatus struct {
	Name    string    `json:"name"`
	Topic   string    `json:"topic"`
	NextRun time.Time `json:"next_run"`
}

// fireJob publishes one trigger message for job.
func (s *Service) fireJob(ctx context.Context, job configpkg.ScheduledJob) error {
	msg, err := newTriggerMessage(job, nowUTC())
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	return s.publisher.Publish(job.Topic, msg)
}

// newTriggerMessage builds the message published when job fires. The payload
// is the job payload as a protobuf Struct.
func newTriggerMessage(job configpkg.ScheduledJob, firedAt time.Time) (*message.Message, error) {
	payload, err := structpb.NewStruct(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("job %q payload: %w", job.Name, err)
	}

	md := metadatapkg.Metadata(job.Metadata).Clone()
	md = md.Merge(metadatapkg.New(
		MetadataKeyJob, job.Name,
		MetadataKeyFiredAt, firedAt.Format(time.RFC3339),
		MetadataKeyCorrelationID, idspkg.New(),
	))
	return NewMessageFromProto(payload, md)
}
