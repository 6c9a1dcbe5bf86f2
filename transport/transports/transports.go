// Package transports registers every built-in transport with the default
// registry. Import it for side effects.
package transports

import (
	_ "github.com/drblury/routeflow/transport/aws"
	_ "github.com/drblury/routeflow/transport/channel"
	_ "github.com/drblury/routeflow/transport/http"
	_ "github.com/drblury/routeflow/transport/io"
	_ "github.com/drblury/routeflow/transport/kafka"
	_ "github.com/drblury/routeflow/transport/nats"
	_ "github.com/drblury/routeflow/transport/rabbitmq"
)
