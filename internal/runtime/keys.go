package runtime

// Reserved metadata keys. Policies may read them but should not overwrite
// them.
const (
	// MetadataKeyCorrelationID tracks related messages across services.
	MetadataKeyCorrelationID = "correlation_id"

	// MetadataKeyEventSchema identifies the proto message type of the payload.
	MetadataKeyEventSchema = "event_message_schema"

	// MetadataKeyJob names the scheduled job that emitted a trigger message.
	MetadataKeyJob = "routeflow_job"

	// MetadataKeyFiredAt records when a scheduled job fired, RFC 3339.
	MetadataKeyFiredAt = "routeflow_fired_at"

	// MetadataKeyRoutedBy names the routing handler that forwarded a message.
	MetadataKeyRoutedBy = "routeflow_routed_by"

	// DefaultDestinationKey is where routing policies write the target topic.
	DefaultDestinationKey = "route.Destination"
)
