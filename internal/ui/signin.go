package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"ShapeBoard/internal/errors"
)

func (a *App) refreshAuth() {
	if a.auth == nil {
		return
	}
	if user := a.prefs.Username(); a.prefs.Token() != "" && user != "" {
		a.auth.SetText("Sign out (" + user + ")")
		return
	}
	a.auth.SetText("Sign in")
}

func (a *App) onAuth() {
	if a.prefs.Token() != "" {
		a.signOutAsync()
		return
	}
	a.showSignIn()
}

func (a *App) showSignIn() {
	if a.client() == nil {
		a.setStatus(msgNoServer)
		return
	}

	username := widget.NewEntry()
	username.SetText(a.prefs.Username())
	password := widget.NewPasswordEntry()
	create := widget.NewCheck("Create a new account", nil)

	items := []*widget.FormItem{
		widget.NewFormItem("Username", username),
		widget.NewFormItem("Password", password),
		widget.NewFormItem("", create),
	}
	d := dialog.NewForm("Sign in", "Sign in", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		a.signInAsync(username.Text, password.Text, create.Checked)
	}, a.window)
	d.Resize(fyne.NewSize(360, 240))
	d.Show()
}

func (a *App) signInAsync(username, password string, register bool) {
	a.setStatus("Signing in...")
	go func() {
		err := a.signIn(context.Background(), username, password, register)
		fyne.Do(func() {
			if err != nil {
				a.showError(err)
				return
			}
			a.refreshAuth()
			a.setStatus("Signed in as " + username)
		})
	}()
}

// signIn logs in, or registers first when register is set, and starts the
// change feed on success.
func (a *App) signIn(ctx context.Context, username, password string, register bool) error {
	c := a.client()
	if c == nil {
		return errors.New(errors.CodeTransportFailure, "no drawing server")
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Client.Timeout.Duration)
	defer cancel()

	var err error
	if register {
		err = c.Register(ctx, username, password)
	} else {
		err = c.Login(ctx, username, password)
	}
	if err != nil {
		return err
	}
	a.startWatch()
	return nil
}

func (a *App) signOutAsync() {
	c := a.client()
	a.stopWatch()
	go func() {
		var err error
		if c != nil {
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Client.Timeout.Duration)
			err = c.Logout(ctx)
			cancel()
		} else {
			err = a.prefs.Clear()
		}
		fyne.Do(func() {
			a.refreshAuth()
			if err != nil {
				a.logger.Warn("sign out", "err", err)
			}
			a.setStatus("Signed out")
		})
	}()
}
