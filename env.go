package odoorpc

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// The environment variables read by FromEnv().
const (
	// EnvHost is the environment variable containing the server host. It is
	// the only variable that must be set.
	EnvHost = "ODOO_HOST"

	// EnvPort is the environment variable containing the server port, as a
	// decimal integer.
	EnvPort = "ODOO_PORT"

	// EnvProtocol is the environment variable containing the connection
	// protocol, one of ProtocolJSONRPC or ProtocolJSONRPCSSL.
	EnvProtocol = "ODOO_PROTOCOL"

	// EnvTimeout is the environment variable containing the request timeout,
	// as a number of seconds.
	EnvTimeout = "ODOO_TIMEOUT"

	// EnvVersion is the environment variable containing the server version,
	// such as "16.0". Setting it suppresses version discovery.
	EnvVersion = "ODOO_VERSION"
)

// The protocols accepted in the EnvProtocol environment variable.
const (
	// ProtocolJSONRPC connects over plain HTTP, as NewConnector() does.
	ProtocolJSONRPC = "jsonrpc"

	// ProtocolJSONRPCSSL connects over HTTPS, as NewTLSConnector() does.
	ProtocolJSONRPCSSL = "jsonrpc+ssl"
)

// FromEnv returns a Connector configured from the ODOO_* environment
// variables.
//
// If a .env file exists in the working directory it is loaded first, without
// overriding variables that are already set. Options given to FromEnv() take
// precedence over the environment.
func FromEnv(options ...Option) (*Connector, error) {
	// A missing .env file is not an error; the environment itself is the
	// canonical source.
	_ = godotenv.Load()

	host := os.Getenv(EnvHost)
	if host == "" {
		return nil, newConfigError("the %s environment variable must be set", EnvHost)
	}

	protocol := os.Getenv(EnvProtocol)
	if protocol == "" {
		protocol = ProtocolJSONRPC
	}

	var envOptions []Option

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, newConfigError("the port '%s' is invalid: an integer is required", p)
		}

		envOptions = append(envOptions, WithPort(port))
	}

	if t := os.Getenv(EnvTimeout); t != "" {
		seconds, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, newConfigError("the timeout '%s' is invalid: a number of seconds is required", t)
		}

		envOptions = append(envOptions, WithTimeout(time.Duration(seconds*float64(time.Second))))
	}

	if v := os.Getenv(EnvVersion); v != "" {
		envOptions = append(envOptions, WithVersion(v))
	}

	options = append(envOptions, options...)

	switch protocol {
	case ProtocolJSONRPC:
		return NewConnector(host, options...)
	case ProtocolJSONRPCSSL:
		return NewTLSConnector(host, options...)
	default:
		return nil, newConfigError(
			"the protocol '%s' is not supported: choose one of '%s' or '%s'",
			protocol,
			ProtocolJSONRPC,
			ProtocolJSONRPCSSL,
		)
	}
}
