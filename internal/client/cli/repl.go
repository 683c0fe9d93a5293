package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Account(ctx context.Context) error
	Passwd(ctx context.Context) error
	Avatar(ctx context.Context) error
	Cover(ctx context.Context) error
}

// runREPL reads one command per line and dispatches it. Command errors are
// printed and the loop continues. It returns on EOF, "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gt %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var cmdErr error
		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, whoami, account, passwd, avatar, cover, refresh, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "refresh":
			cmdErr = a.Refresh(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "me":
			cmdErr = a.Me(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "account":
			cmdErr = a.Account(ctx)
		case "passwd":
			cmdErr = a.Passwd(ctx)
		case "avatar":
			cmdErr = a.Avatar(ctx)
		case "cover":
			cmdErr = a.Cover(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", parts[0])
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
