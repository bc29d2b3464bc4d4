package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/gateway"
	shapenet "ShapeBoard/internal/net"
	"ShapeBoard/internal/session"
	"ShapeBoard/internal/state"
)

const discoverTimeout = 3 * time.Second

// browse finds drawing servers; tests replace it.
var browse = shapenet.Browse

// newClient builds an API client backed by the CLI session file. Without a
// configured URL the first server found on the network is used.
func newClient(ctx context.Context, opts *rootOptions) (*gateway.APIClient, *session.FileStore, error) {
	sess, err := session.NewFileStore(opts.cfg.Client.SessionFile)
	if err != nil {
		return nil, nil, err
	}

	baseURL := opts.cfg.Client.APIURL
	if baseURL == "" {
		addrs, err := browse(ctx, discoverTimeout)
		if err != nil || len(addrs) == 0 {
			return nil, nil, errors.New(errors.CodeTransportFailure, "no drawing server found; set client.api_url or pass --api")
		}
		baseURL = "http://" + addrs[0]
		loggerFromContext(ctx).Debug("discovered server", "url", baseURL)
	}

	client := gateway.NewAPIClient(baseURL, sess,
		gateway.WithHTTPClient(&http.Client{Timeout: opts.cfg.Client.Timeout.Duration}),
		gateway.WithLogger(loggerFromContext(ctx)),
	)
	return client, sess, nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		username string
		password string
		register bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the drawing server",
		Long: `Sign in to the drawing server and store the session token.

The password is read from standard input when --password is not given.
Use --register to create the account first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, sess, err := newClient(ctx, opts)
			if err != nil {
				return err
			}
			if username == "" {
				username = sess.Username()
			}
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			if register {
				err = client.Register(ctx, username, password)
			} else {
				err = client.Login(ctx, username, password)
			}
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Signed in as %s", styleValue.Render(username))
			printFile(cmd.OutOrStdout(), sess.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().BoolVar(&register, "register", false, "create the account before signing in")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, sess, err := newClient(ctx, opts)
			if err != nil {
				return err
			}
			if !client.SignedIn() {
				printInfo(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			user := sess.Username()
			if err := client.Logout(ctx); err != nil {
				printWarning(cmd.OutOrStdout(), "Server sign-out failed: %s", errors.Message(err))
			}
			printSuccess(cmd.OutOrStdout(), "Signed out %s", user)
			return nil
		},
	}
}

func newPushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a drawing document to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			store := state.NewStore(logger)
			files := gateway.NewFileGateway(filepath.Dir(args[0]), logger)
			files.SetSource(args[0])
			if _, err := gateway.Import(ctx, files, store); err != nil {
				return err
			}

			client, _, err := newClient(ctx, opts)
			if err != nil {
				return err
			}
			p := newProgress(logger)
			if err := gateway.Export(ctx, client, store); err != nil {
				return err
			}
			p.done("drawing uploaded")

			d := store.Snapshot()
			printSuccess(cmd.OutOrStdout(), "Pushed %s", styleValue.Render(d.Title))
			printCounts(cmd.OutOrStdout(), countsOf(d))
			return nil
		},
	}
}

func newPullCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download the saved drawing from the server",
		Long: `Download the saved drawing and write it as a JSON document.

Without --out the file is written to client.export_dir and named after the
drawing title.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			client, _, err := newClient(ctx, opts)
			if err != nil {
				return err
			}
			store := state.NewStore(logger)
			if _, err := gateway.Import(ctx, client, store); err != nil {
				return err
			}
			d := store.Snapshot()

			files := gateway.NewFileGateway(opts.cfg.Client.ExportDir, logger)
			var path string
			if out == "" {
				path, err = files.ExportToFile(d)
			} else {
				path, err = writeDocument(files, out, d)
			}
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Pulled %s", styleValue.Render(d.Title))
			printCounts(cmd.OutOrStdout(), countsOf(d))
			printFile(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func writeDocument(files *gateway.FileGateway, path string, d state.Drawing) (_ string, err error) {
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(errors.CodeTransportFailure, err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.CodeTransportFailure, cerr, "close %s", path)
		}
	}()
	if err := files.WriteTo(f, d); err != nil {
		return "", err
	}
	return path, nil
}

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List drawing servers on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			printInfo(cmd.OutOrStdout(), "Searching for %s...", timeout)
			addrs, err := browse(ctx, timeout)
			if err != nil {
				return err
			}
			if len(addrs) == 0 {
				printWarning(cmd.OutOrStdout(), "No drawing servers found")
				return nil
			}
			for _, addr := range addrs {
				printFile(cmd.OutOrStdout(), "http://"+addr)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", discoverTimeout, "how long to listen for answers")
	return cmd
}

func countsOf(d state.Drawing) []kindCount {
	counts := d.Counts()
	out := make([]kindCount, 0, len(counts))
	for _, k := range state.AllKinds() {
		out = append(out, kindCount{kind: string(k), n: counts[k]})
	}
	return out
}
