package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"acquire/internal/cli"
	"acquire/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "acquirectl",
		Short:        "Acquire server command-line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newListCmd(&apiBase),
		newHostCmd(&apiBase),
		newJoinCmd(&apiBase),
		newLeaveCmd(&apiBase),
		newLobbyStatusCmd(&apiBase),
		newStartCmd(&apiBase),
		newStatusCmd(&apiBase),
		newTileCmd(&apiBase),
		newEstablishCmd(&apiBase),
		newBuyCmd(&apiBase),
		newEndTurnCmd(&apiBase),
		newResultCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cli.Client {
	return cli.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func printJSON(v any) {
	raw, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(raw))
}

func newListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open lobbies",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newClient(apiBase).ListLobbies(context.Background())
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func newHostCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "host <username>",
		Short: "Create a lobby and become its host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newClient(apiBase).Host(context.Background(), args[0])
			if err != nil {
				return err
			}
			lobbyID, _ := out["lobbyId"].(string)
			if err := cli.SaveSession(cli.Session{Username: args[0], LobbyID: lobbyID}); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <lobby-id> <username>",
		Short: "Join an existing lobby",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(apiBase).Join(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			return cli.SaveSession(cli.Session{Username: args[1], LobbyID: args[0]})
		},
	}
}

func newLeaveCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave the current lobby",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			if err := newClient(apiBase).Leave(context.Background(), s); err != nil {
				return err
			}
			return cli.ClearSession()
		},
	}
}

func newLobbyStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lobby",
		Short: "Show the current lobby status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).LobbyStatus(context.Background(), s)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func newStartCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			return newClient(apiBase).StartGame(context.Background(), s)
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current game status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).GameStatus(context.Background(), s)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func newTileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tile <x> <y>",
		Short: "Place a tile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			x, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("x must be an integer")
			}
			y, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("y must be an integer")
			}
			return newClient(apiBase).PlaceTile(context.Background(), s, x, y)
		},
	}
}

func newEstablishCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "establish <corporation>",
		Short: "Establish a corporation on the placed component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			return newClient(apiBase).Establish(context.Background(), s, args[0])
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <corporation> [corporation...]",
		Short: "Buy up to three shares this turn",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			return newClient(apiBase).BuyStocks(context.Background(), s, args)
		},
	}
}

func newEndTurnCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "end-turn",
		Short: "End the current turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			return newClient(apiBase).EndTurn(context.Background(), s)
		},
	}
}

func newResultCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "result",
		Short: "Show the final ranking once the game ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.LoadSession()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).EndResult(context.Background(), s)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}
