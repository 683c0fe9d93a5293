package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophtube/internal/client/client"
	"github.com/dmitrijs2005/gophtube/internal/client/config"
	"github.com/dmitrijs2005/gophtube/internal/client/models"
)

// API is the HTTP surface the commands use. *client.APIClient implements it.
type API interface {
	Register(ctx context.Context, r client.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, login, password string) (*models.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UpdateAvatar(ctx context.Context, path string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, path string) (*models.User, error)
	Session() models.Session
}

// Identity resolves the caller over gRPC.
type Identity interface {
	WhoAmI(ctx context.Context) (string, error)
}

type App struct {
	config *config.Config
	api    API
	ident  Identity
	reader *bufio.Reader
	out    io.Writer
	close  func() error
}

func NewApp(c *config.Config) (*App, error) {
	api, err := client.NewAPIClient(c.ServerURL, c.RequestTimeout, client.NewSessionFile(c.SessionFile))
	if err != nil {
		return nil, err
	}

	g, err := client.NewGRPCClient(c.GRPCAddr, func() string { return api.Session().AccessToken })
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		api:    api,
		ident:  g,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		close:  g.Close,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.api.Session().LoggedIn()
}

func (a *App) getStatus() string {
	if a.isLoggedIn() {
		return "(logged in)"
	}
	return "(guest)"
}

// Run blocks until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if a.close != nil {
			_ = a.close()
		}
	}()

	fmt.Fprintln(a.out, "Welcome to GophTube CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}
