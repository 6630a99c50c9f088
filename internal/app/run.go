package app

import (
	"fmt"

	fyneapp "fyne.io/fyne/v2/app"

	"yashubustudio/nertally/tally"
)

const fyneAppID = "yashubustudio.nertally"

// Run loads config.json and .env, then starts the desktop UI. The model is
// opened on the first analysis.
func Run() error {
	cfg, err := tally.LoadConfig("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env, err := tally.LoadEnv(".env")
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}
	cfg.ApplyDefaults()

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, cfg)
	defer u.close()
	u.w.ShowAndRun()
	return nil
}
