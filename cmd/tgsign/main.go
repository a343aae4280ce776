// Command tgsign prints Telegram payloads signed with a bot token, for local
// testing of clients and of the tgauth service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth/tgauthtest"
)

type options struct {
	token     string
	flow      string
	userID    int64
	firstName string
	username  string
	queryID   string
	authDate  int64
	random    bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "tgsign: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("tgsign", flag.ContinueOnError)
	fs.StringVar(&o.token, "token", os.Getenv("TELEGRAM_BOT_TOKEN"), "bot token (env TELEGRAM_BOT_TOKEN)")
	fs.StringVar(&o.flow, "flow", "init_data", "init_data or oauth")
	fs.Int64Var(&o.userID, "id", 0, "telegram user id (random when 0)")
	fs.StringVar(&o.firstName, "first-name", "Test", "user first name")
	fs.StringVar(&o.username, "username", "", "user username")
	fs.StringVar(&o.queryID, "query-id", "", "init data query_id")
	fs.Int64Var(&o.authDate, "auth-date", 0, "unix auth_date (now when 0)")
	fs.BoolVar(&o.random, "random-token", false, "ignore -token and sign with a freshly generated one")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if o.random {
		o.token = tgauthtest.RandomBotToken()
	}
	if o.token == "" {
		return options{}, fmt.Errorf("bot token is required")
	}
	if o.userID == 0 {
		o.userID = tgauthtest.RandomBotID()
	}
	if o.authDate == 0 {
		o.authDate = time.Now().Unix()
	}
	return o, nil
}

func run(args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.random {
		fmt.Fprintf(out, "# token: %s\n", o.token)
	}

	switch o.flow {
	case tgauth.FlowWebApp.String():
		raw, err := tgauthtest.SignInitData(o.token, tgauthtest.InitDataParams{
			QueryID: o.queryID,
			User: tgauth.WebAppUser{
				ID:        o.userID,
				FirstName: o.firstName,
				Username:  o.username,
			},
			AuthDate: o.authDate,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, raw)
		return err
	case tgauth.FlowOAuth.String():
		u := &tgauth.OAuthUser{
			ID:        o.userID,
			FirstName: o.firstName,
			Username:  o.username,
			AuthDate:  o.authDate,
		}
		if err := tgauthtest.SignOAuthUser(o.token, u); err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	default:
		return fmt.Errorf("unknown flow %q", o.flow)
	}
}
