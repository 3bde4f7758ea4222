package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/appmand/appmand"
)

func open(gf *GlobalFlags) (*appmand.Daemon, error) {
	return appmand.Open(appmand.Options{
		CatalogPath: gf.CatalogPath,
		LedgerPath:  gf.LedgerPath,
		StoreDSN:    gf.StoreDSN,
		LogLevel:    gf.LogLevel,
		LogPath:     gf.LogPath,
	})
}

func createServeCommand(gf *GlobalFlags, sf *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with the HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()

			srv, err := d.Serve(sf.Addr, sf.BasePath)
			if err != nil {
				return err
			}
			d.Logger().Info("serving", "addr", sf.Addr, "base_path", sf.BasePath)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			d.Logger().Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&sf.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&sf.BasePath, "base-path", "", "URL prefix for all endpoints")
	return cmd
}

func createLaunchCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <app>",
		Short: "Launch a catalog app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()
			if err := d.Launch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s launched\n", args[0])
			return nil
		},
	}
}

func createCloseCommand(gf *GlobalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "close [app]",
		Short: "Close a catalog app, or everything with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("app argument or --all required")
			}
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()
			if all {
				closed := d.CloseAll(cmd.Context())
				if len(closed) == 0 {
					fmt.Println("nothing was running")
					return nil
				}
				for _, id := range closed {
					fmt.Printf("%s closed\n", id)
				}
				return nil
			}
			if err := d.Close(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s closed\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "close every running catalog app")
	return cmd
}

func createStatusCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which catalog apps are running",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()
			for _, st := range d.Status() {
				if st.Running {
					fmt.Printf("%-10s running (pid %d)\n", st.ID, st.PID)
				} else {
					fmt.Printf("%-10s stopped\n", st.ID)
				}
			}
			return nil
		},
	}
}

func createStatsCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-app usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()
			stats := d.Stats(cmd.Context())
			for _, id := range d.Catalog().IDs() {
				u := stats[id]
				fmt.Printf("%-10s launches=%d total=%s last=%s\n",
					id, u.Launches, (time.Duration(u.TotalSeconds) * time.Second).String(), u.LastLaunch)
			}
			return nil
		},
	}
}

func createSetPathCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-path <app> <path>",
		Short: "Set a launch path for an app and persist the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open(gf)
			if err != nil {
				return err
			}
			defer d.Shutdown()
			return d.Catalog().SetPath(args[0], args[1])
		},
	}
}
