package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/layer-3/nftgate/client/gate"
	"github.com/layer-3/nftgate/config"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "nftgate",
		Usage: "unlock the premium dashboard with an access NFT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional dotenv file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "connect the wallet, check the access NFT and sign in",
				Action: withApp(login),
			},
			{
				Name:   "status",
				Usage:  "show wallet, entitlement and session state",
				Action: withApp(status),
			},
			{
				Name:   "logout",
				Usage:  "sign out and disconnect the wallet",
				Action: withApp(logout),
			},
			{
				Name:      "balance",
				Usage:     "show how many access NFTs an address holds",
				ArgsUsage: "[address]",
				Action:    withApp(balance),
			},
			{
				Name:      "owner",
				Usage:     "show the owner of an access NFT",
				ArgsUsage: "<token id>",
				Action:    withApp(owner),
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func withApp(run func(*cli.Context, *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadClient(c.String("env-file"))
		if err != nil {
			return err
		}
		a, err := newApp(c.Context, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(c, a)
	}
}

func login(c *cli.Context, a *app) error {
	view := a.gate.View()
	if view.Stage == gate.StageConnect {
		view = a.gate.Connect(c.Context)
	}
	if view.Stage == gate.StageVerify {
		view = a.gate.VerifyAndLogin(c.Context)
	}
	printView(view)
	if view.Status != "" {
		return cli.Exit("", 1)
	}
	return nil
}

func status(c *cli.Context, a *app) error {
	view := a.gate.View()
	printView(view)

	if view.Stage != gate.StageDashboard {
		return nil
	}
	dashboard, err := a.verifier.Dashboard(c.Context, a.gate.Token())
	if err != nil {
		return err
	}
	fmt.Printf("Dashboard for %s\n", dashboard.Address)
	fmt.Printf("Sections: %v\n", dashboard.Sections)
	return nil
}

func logout(c *cli.Context, a *app) error {
	printView(a.gate.Logout(c.Context))
	return nil
}

func balance(c *cli.Context, a *app) error {
	var address common.Address
	switch {
	case c.Args().Present():
		if !common.IsHexAddress(c.Args().First()) {
			return cli.Exit("invalid address: "+c.Args().First(), 1)
		}
		address = common.HexToAddress(c.Args().First())
	case a.gate.View().Address != "":
		address = common.HexToAddress(a.gate.View().Address)
	default:
		return cli.Exit("no wallet connected and no address given", 1)
	}

	fmt.Printf("%s holds %s access NFT(s)\n", address.Hex(), a.gate.Checker().CheckBalance(c.Context, address))
	return nil
}

func owner(c *cli.Context, a *app) error {
	tokenID, ok := new(big.Int).SetString(c.Args().First(), 10)
	if !ok {
		return cli.Exit("token id must be a decimal integer", 1)
	}

	holder, err := a.gate.Checker().OwnerOf(c.Context, tokenID)
	if err != nil {
		return err
	}
	fmt.Printf("Token %s is owned by %s\n", tokenID, holder.Hex())
	return nil
}

func printView(view gate.View) {
	address := view.Address
	if address == "" {
		address = "not connected"
	}
	fmt.Printf("Wallet:  %s\n", address)

	switch {
	case view.Address == "":
		fmt.Printf("NFT:     %s\n", color.WhiteString("unknown"))
	case view.Granted:
		fmt.Printf("NFT:     %s\n", color.GreenString("You own the Premium Access NFT!"))
	default:
		fmt.Printf("NFT:     %s\n", color.RedString("You don't own the required NFT"))
	}

	fmt.Printf("Session: %s\n", view.Session)
	fmt.Printf("Stage:   %s\n", stageString(view.Stage))
	if view.Status != "" {
		color.Red("Error:   %s", view.Status)
	}
}

func stageString(stage gate.Stage) string {
	switch stage {
	case gate.StageDashboard:
		return color.GreenString(stage.String())
	case gate.StageDenied:
		return color.RedString(stage.String())
	default:
		return color.YellowString(stage.String())
	}
}
