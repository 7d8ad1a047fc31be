// Package app declares the telimart app: its metadata and the doc-event
// hooks it contributes to the host framework.
package app

import (
	"context"
	"fmt"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/hooks"
	"github.com/telimart/telimart/internal/share"
)

// Info is the app's published metadata.
type Info struct {
	Name        string `json:"app_name"`
	Title       string `json:"app_title"`
	Publisher   string `json:"app_publisher"`
	Description string `json:"app_description"`
	Email       string `json:"app_email"`
	License     string `json:"app_license"`
	Version     string `json:"version"`
}

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Metadata returns the app's metadata.
func Metadata() Info {
	return Info{
		Name:        "telimart",
		Title:       "Telimart",
		Publisher:   "Telimart",
		Description: "Telimart",
		Email:       "venku31@gmail.com",
		License:     "mit",
		Version:     Version,
	}
}

// Handler names as they appear in the registry and in dispatch errors.
const (
	ShareTeamHandler = "telimart.iwo_number.share_with_team"
	RevokeAllHandler = "telimart.iwo_number.remove_all_shares"
)

// Register wires the IWO Number lifecycle hooks into reg:
// on_update reconciles team shares and on_trash revokes them all.
func Register(reg *hooks.Registry, r *share.Reconciler) error {
	err := reg.Register(hooks.OnUpdate, doctype.IWONumber, ShareTeamHandler,
		func(ctx context.Context, rec doctype.Record) error {
			_, err := r.OnSave(ctx, rec)
			return err
		})
	if err != nil {
		return fmt.Errorf("register app hooks: %w", err)
	}

	err = reg.Register(hooks.OnTrash, doctype.IWONumber, RevokeAllHandler,
		func(ctx context.Context, rec doctype.Record) error {
			_, err := r.OnDelete(ctx, rec)
			return err
		})
	if err != nil {
		return fmt.Errorf("register app hooks: %w", err)
	}
	return nil
}
