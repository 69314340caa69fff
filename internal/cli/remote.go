package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/internal/config"
	"github.com/williamfrack18-alt/anmar-engine/internal/daemon"
	"github.com/williamfrack18-alt/anmar-engine/pkg/client"
)

// apiClient connects a command to the running daemon using the addr file and
// the configured API key.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	home := config.MustHomeFrom(cmd.Context())
	st, err := daemon.Status(cmd.Context(), home)
	if err != nil {
		return nil, err
	}
	if !st.Running {
		return nil, fmt.Errorf("anmar engine is not running; start it with: anmar start")
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	return client.New("http://"+st.Addr, cfg.APIKey), nil
}
