package util

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/wrale/wrale-lexdesk/internal/lexctl/client"
	"github.com/wrale/wrale-lexdesk/internal/lexctl/config"
)

// EnvServer overrides the server of the current context
const EnvServer = "LEXCTL_SERVER"

// GetClient creates an API client. The server comes from override, then
// $LEXCTL_SERVER, then the current context.
func GetClient(cfg *config.Config, override string) (*client.Client, error) {
	server := override
	if server == "" {
		server = os.Getenv(EnvServer)
	}

	var opts []client.ClientOption
	if server == "" {
		ctx, err := cfg.GetCurrentContext()
		if err != nil {
			return nil, fmt.Errorf("no server configured - pass --server, set %s or run 'lexctl config set-context': %w", EnvServer, err)
		}
		server = ctx.Server
		if ctx.InsecureSkipVerify {
			opts = append(opts, client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
		}
	}

	c, err := client.NewClient(server, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return c, nil
}
