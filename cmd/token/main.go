// Command token mints a session token for a user id, signed with the
// record store's secret. Server flags (-s, -t, -c) are honored.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/carledger/internal/flagx"
	"github.com/dmitrijs2005/carledger/internal/server/auth"
	"github.com/dmitrijs2005/carledger/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	var userID string
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	fs.StringVar(&userID, "u", "", "user id to mint a token for")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-u"}))

	if userID == "" {
		log.Fatal("user id is required (-u)")
	}

	token, err := auth.GenerateToken(userID, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(token)

}
