package runtime

import (
	"net/http"

	"github.com/drblury/routeflow/internal/runtime/jsoncodec"
)

// PolicySummary describes a loaded policy.
type PolicySummary struct {
	Name  string   `json:"name"`
	Rules []string `json:"rules"`
}

// registerAdminHandlers exposes read-only JSON views of the running service
// next to the metrics endpoint.
func (s *Service) registerAdminHandlers(port int) {
	s.RegisterHTTPHandler(port, "/api/handlers", s.jsonHandler(func() any { return s.Handlers() }))
	s.RegisterHTTPHandler(port, "/api/policies", s.jsonHandler(func() any { return s.PolicySummaries() }))
	s.RegisterHTTPHandler(port, "/api/jobs", s.jsonHandler(func() any { return s.ScheduledJobs() }))
}

// PolicySummaries lists the active policies and their rules in evaluation
// order.
func (s *Service) PolicySummaries() []PolicySummary {
	names := s.policies.Names()
	out := make([]PolicySummary, 0, len(names))
	for _, name := range names {
		p, ok := s.policies.Get(name)
		if !ok {
			continue
		}
		summary := PolicySummary{Name: name, Rules: make([]string, 0, p.Len())}
		for _, r := range p.Rules() {
			summary.Rules = append(summary.Rules, r.Name)
		}
		out = append(out, summary)
	}
	return out
}

func (s *Service) jsonHandler(view func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, view()); err != nil {
			s.Logger.Error("Failed to encode admin response", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
