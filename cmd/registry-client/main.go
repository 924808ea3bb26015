package main

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/ruteri/delegate-upgrade-registry/api/migrationhandler"
	"github.com/ruteri/delegate-upgrade-registry/cmd/flags"
	"github.com/ruteri/delegate-upgrade-registry/cryptoutils"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/migration"
	"github.com/urfave/cli/v2"
)

var flagURL *cli.StringFlag = &cli.StringFlag{
	Name:    "url",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"REGISTRY_URL"},
	Usage:   "registry server URL",
}

var flagNamespace *cli.StringFlag = &cli.StringFlag{
	Name:  "namespace",
	Usage: "named namespace; omit for the default namespace (an empty value is a distinct named namespace)",
}

var flagDebugOrigin *cli.StringFlag = &cli.StringFlag{
	Name:    "debug-origin",
	EnvVars: []string{"REGISTRY_DEBUG_ORIGIN"},
	Usage:   "base58 origin sent in the attested origin header; only honored by servers in header mode behind no proxy",
}

var flagTLSCert *cli.StringFlag = &cli.StringFlag{
	Name:  "tls-cert",
	Usage: "PEM client certificate for servers in tls origin mode",
}

var flagTLSKey *cli.StringFlag = &cli.StringFlag{
	Name:  "tls-key",
	Usage: "PEM private key for --tls-cert",
}

var flagTLSCA *cli.StringFlag = &cli.StringFlag{
	Name:  "tls-ca",
	Usage: "PEM bundle used to verify the server certificate",
}

var flagDelegateKey *cli.StringFlag = &cli.StringFlag{
	Name:     "delegate-key",
	Usage:    "hex delegate key to record",
	Required: true,
}

var flagCodeHash *cli.StringFlag = &cli.StringFlag{
	Name:     "code-hash",
	Usage:    "hex code hash to record",
	Required: true,
}

var flagBinary *cli.StringFlag = &cli.StringFlag{
	Name:     "binary",
	Usage:    "delegate code whose identity is derived and recorded",
	Required: true,
}

var flagParams *cli.StringFlag = &cli.StringFlag{
	Name:  "params",
	Usage: "hex delegate parameters mixed into the delegate key",
}

var flagManifest *cli.StringFlag = &cli.StringFlag{
	Name:  "manifest",
	Usage: "YAML manifest of earlier versions, consulted when the registry has no record",
}

var clientFlags = []cli.Flag{flagURL, flagNamespace, flagDebugOrigin, flagTLSCert, flagTLSKey, flagTLSCA}

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: "Query and update the delegate upgrade registry",
		Flags: clientFlags,
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the identity recorded for the caller's namespace",
				Action: func(cCtx *cli.Context) error {
					client, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := client.GetPreviousKey(cCtx.Context, namespaceFrom(cCtx))
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "set",
				Usage: "Record an identity for the caller's namespace",
				Flags: []cli.Flag{flagDelegateKey, flagCodeHash},
				Action: func(cCtx *cli.Context) error {
					delegateKey, err := interfaces.NewDelegateKeyFromHex(cCtx.String(flagDelegateKey.Name))
					if err != nil {
						return err
					}
					codeHash, err := interfaces.NewCodeHashFromHex(cCtx.String(flagCodeHash.Name))
					if err != nil {
						return err
					}

					client, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := client.SetCurrentKey(cCtx.Context, namespaceFrom(cCtx), interfaces.MappingRecord{
						DelegateKey: delegateKey,
						CodeHash:    codeHash,
					})
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "upgrade",
				Usage: "Run the upgrade protocol for a delegate binary and print the plan",
				Flags: []cli.Flag{flagBinary, flagParams, flagManifest, flags.LogDebugFlag, flags.LogJsonFlag},
				Action: func(cCtx *cli.Context) error {
					params, err := hex.DecodeString(strings.TrimPrefix(cCtx.String(flagParams.Name), "0x"))
					if err != nil {
						return fmt.Errorf("invalid params: %w", err)
					}
					current, err := migration.IdentityFromFile(cCtx.String(flagBinary.Name), params)
					if err != nil {
						return err
					}

					var known []migration.Version
					if path := cCtx.String(flagManifest.Name); path != "" {
						data, err := os.ReadFile(path)
						if err != nil {
							return err
						}
						if known, err = migration.LoadManifest(data); err != nil {
							return err
						}
					}

					client, err := newClient(cCtx)
					if err != nil {
						return err
					}

					logger := flags.SetupLogger(cCtx)
					upgrader := migration.NewUpgrader(client, namespaceFrom(cCtx), current, known, logger)
					plan, err := upgrader.Run(cCtx.Context, func(_ context.Context, previous migration.Version) error {
						logger.Info("state should be carried over", "previous", previous.String())
						return nil
					})
					if err != nil {
						return err
					}
					return printJSON(plan)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func namespaceFrom(cCtx *cli.Context) interfaces.Namespace {
	if !cCtx.IsSet(flagNamespace.Name) {
		return interfaces.DefaultNamespace()
	}
	return interfaces.NamedNamespace(cCtx.String(flagNamespace.Name))
}

func newClient(cCtx *cli.Context) (*migrationhandler.Client, error) {
	client := migrationhandler.NewClient(cCtx.String(flagURL.Name))
	client.DebugOriginHeader = cCtx.String(flagDebugOrigin.Name)

	certPath, keyPath := cCtx.String(flagTLSCert.Name), cCtx.String(flagTLSKey.Name)
	caPath := cCtx.String(flagTLSCA.Name)
	if certPath == "" && keyPath == "" && caPath == "" {
		return client, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("--tls-cert and --tls-key must be set together")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("could not load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if caPath != "" {
		pool, err := cryptoutils.LoadCertPool(caPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	client.Client = &http.Client{Transport: &http.Transport{TLSClientConfig: tlsConfig}}
	return client, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
