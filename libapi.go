package routeflow

import (
	"github.com/drblury/routeflow/internal/policy"
	"github.com/drblury/routeflow/internal/rules"
	runtimepkg "github.com/drblury/routeflow/internal/runtime"
	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
	idspkg "github.com/drblury/routeflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/routeflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/routeflow/internal/runtime/metadata"
	"github.com/drblury/routeflow/transport"
)

type (
	Config              = configpkg.Config
	ScheduledJob        = configpkg.ScheduledJob
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration
	RoutingHandlerRegistration = runtimepkg.RoutingHandlerRegistration

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	ResolutionContext = runtimepkg.ResolutionContext
	ResolutionHooks   = runtimepkg.ResolutionHooks

	Producer = runtimepkg.Producer

	Metadata        = metadatapkg.Metadata
	MetadataContext = metadatapkg.Context

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	UnprocessableEventError = runtimepkg.UnprocessableEventError
	ConfigValidationError   = errspkg.ConfigValidationError

	HandlerSnapshot    = runtimepkg.HandlerSnapshot
	PolicySummary      = runtimepkg.PolicySummary
	ScheduledJobStatus = runtimepkg.ScheduledJobStatus

	// Rules engine
	Context           = rules.Context
	MapContext        = rules.MapContext
	Rule              = rules.Rule
	RuleBuilder       = rules.RuleBuilder
	Predicate         = rules.Predicate
	Action            = rules.Action
	Policy            = rules.Policy
	PolicyChain       = rules.Chain
	Result            = rules.Result
	RuleError         = rules.RuleError
	TypeMismatchError = rules.TypeMismatchError

	// Policy documents
	PolicyRegistry = policy.Registry
	PolicySources  = policy.Sources
	PolicyWatcher  = policy.Watcher
	PolicyFormat   = policy.Format

	// Transports
	Transport             = transport.Transport
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfigFile = configpkg.LoadFile
	ParseConfig    = configpkg.Parse

	RegisterMessageHandler = runtimepkg.RegisterMessageHandler
	RegisterRoutingHandler = runtimepkg.RegisterRoutingHandler

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware
	ResolveMiddleware       = runtimepkg.ResolveMiddleware

	LoggingHooks = runtimepkg.LoggingHooks

	NewMessageFromProto = runtimepkg.NewMessageFromProto
	PublishProto        = runtimepkg.PublishProto

	NewUnprocessableEventError = runtimepkg.NewUnprocessableEventError
	IsUnprocessable            = runtimepkg.IsUnprocessable

	// Rules engine
	NewRule    = rules.NewRule
	NewPolicy  = rules.NewPolicy
	MustPolicy = rules.MustPolicy
	ReadString = rules.ReadString
	Always     = rules.Always
	Unset      = rules.Unset
	IsSet      = rules.IsSet
	Equals     = rules.Equals
	OneOf      = rules.OneOf
	HasPrefix  = rules.HasPrefix
	Matches    = rules.Matches
	Not        = rules.Not
	All        = rules.All
	Any        = rules.Any
	Set        = rules.Set
	SetDefault = rules.SetDefault
	Copy       = rules.Copy
	Delete     = rules.Delete
	Sequence   = rules.Sequence

	ErrTypeMismatch       = rules.ErrTypeMismatch
	ErrRuleNameRequired   = rules.ErrRuleNameRequired
	ErrActionRequired     = rules.ErrActionRequired
	ErrPolicyNameRequired = rules.ErrPolicyNameRequired

	// Policy documents
	NewPolicyRegistry  = policy.NewRegistry
	NewPolicyWatcher   = policy.NewWatcher
	ParsePolicies      = policy.Parse
	LoadPolicyFile     = policy.LoadFile
	LoadPolicyFS       = policy.LoadFS
	DefaultPolicies    = policy.Defaults
	ErrPolicyNotFound  = policy.ErrPolicyNotFound
	ErrDuplicatePolicy = policy.ErrDuplicatePolicy

	// Transports
	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	GetCapabilities          = transport.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrServiceRequired      = errspkg.ErrServiceRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrConsumeQueueRequired = errspkg.ErrConsumeQueueRequired
	ErrHandlerNameRequired  = errspkg.ErrHandlerNameRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrTopicRequired        = errspkg.ErrTopicRequired
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrEventPayloadRequired = errspkg.ErrEventPayloadRequired
	ErrDestinationRequired  = errspkg.ErrDestinationRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewZapServiceLogger       = loggingpkg.NewZapServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger

	NewMetadata        = metadatapkg.New
	NewMetadataContext = metadatapkg.NewContext
	MessageContext     = metadatapkg.MessageContext

	NewID = idspkg.New
)

const (
	// DefaultPolicyName is the embedded policy that defaults
	// tracking.ProcessName to "Check".
	DefaultPolicyName = policy.DefaultPolicyName

	PolicyFormatYAML = policy.FormatYAML
	PolicyFormatJSON = policy.FormatJSON
)

// Metadata keys - use these constants for standard metadata fields.
const (
	MetadataKeyCorrelationID = runtimepkg.MetadataKeyCorrelationID
	MetadataKeyEventSchema   = runtimepkg.MetadataKeyEventSchema
	MetadataKeyJob           = runtimepkg.MetadataKeyJob
	MetadataKeyFiredAt       = runtimepkg.MetadataKeyFiredAt
	MetadataKeyRoutedBy      = runtimepkg.MetadataKeyRoutedBy
	DefaultDestinationKey    = runtimepkg.DefaultDestinationKey
)
