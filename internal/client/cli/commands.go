package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophtube/internal/client/client"
	"github.com/dmitrijs2005/gophtube/internal/client/models"
	"github.com/dmitrijs2005/gophtube/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// Register prompts for the account fields and image paths and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	var r client.RegisterRequest
	var err error

	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Full name", &r.FullName},
		{"Email", &r.Email},
		{"Username", &r.UserName},
	} {
		if *f.dst, err = a.prompt(f.prompt); err != nil {
			return err
		}
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	r.Password = string(password)

	if r.AvatarPath, err = a.prompt("Avatar image path"); err != nil {
		return err
	}
	if r.CoverImagePath, err = a.prompt("Cover image path (optional)"); err != nil {
		return err
	}

	u, err := a.api.Register(ctx, r)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s, you can log in now\n", u.UserName)
	return nil
}

// Login accepts a username or an email.
func (a *App) Login(ctx context.Context) error {
	login, err := a.prompt("Username or email")
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Login(ctx, login, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", u.UserName)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.CurrentUser(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	id, err := a.ident.WhoAmI(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *App) Account(ctx context.Context) error {
	fullName, err := a.prompt("Full name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}

	u, err := a.api.UpdateAccount(ctx, fullName, email)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) Passwd(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.api.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) Avatar(ctx context.Context) error {
	return a.replaceImage(ctx, "Avatar image path", a.api.UpdateAvatar)
}

func (a *App) Cover(ctx context.Context) error {
	return a.replaceImage(ctx, "Cover image path", a.api.UpdateCoverImage)
}

func (a *App) replaceImage(ctx context.Context, text string, update func(context.Context, string) (*models.User, error)) error {
	path, err := a.prompt(text)
	if err != nil {
		return err
	}

	u, err := update(ctx, path)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) printUser(u *models.User) {
	fmt.Fprintf(a.out, "id:       %s\n", u.ID)
	fmt.Fprintf(a.out, "username: %s\n", u.UserName)
	fmt.Fprintf(a.out, "name:     %s\n", u.FullName)
	fmt.Fprintf(a.out, "email:    %s\n", u.Email)
	if u.Avatar != "" {
		fmt.Fprintf(a.out, "avatar:   %s\n", u.Avatar)
	}
	if u.CoverImage != "" {
		fmt.Fprintf(a.out, "cover:    %s\n", u.CoverImage)
	}
}
