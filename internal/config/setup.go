package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard walks the operator through the settings that usually differ
// between deployments, then validates and saves the result.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	w := &wizard{reader: bufio.NewReader(in), out: out}

	fmt.Fprintln(out, "Ship-Captain-Crew server setup")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "-- Game listener --")
	cfg.Server.Name = w.promptString("Server name", cfg.Server.Name)
	cfg.Server.Port = w.promptInt("Game port", cfg.Server.Port)
	cfg.Server.Mode = w.promptInt("Mode (1 = against the house, 2 = two players)", cfg.Server.Mode)
	cfg.Server.AuditDirectory = w.promptString("Audit log directory (blank disables)", cfg.Server.AuditDirectory)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "-- Wagering --")
	cfg.Game.InitialGems = w.promptInt("Gems for new players", cfg.Game.InitialGems)
	cfg.Game.Bet = w.promptInt("Bet per hand", cfg.Game.Bet)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "-- History and API --")
	cfg.Database.Enabled = w.promptBool("Record hand history", cfg.Database.Enabled)
	cfg.API.Enabled = w.promptBool("Enable REST API", cfg.API.Enabled)
	if cfg.API.Enabled {
		cfg.API.Port = w.promptInt("REST API port", cfg.API.Port)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "-- MQTT Telemetry --")
	cfg.MQTT.Enabled = w.promptBool("Enable MQTT telemetry", cfg.MQTT.Enabled)
	if cfg.MQTT.Enabled {
		cfg.MQTT.BrokerURL = w.promptString("Broker host", cfg.MQTT.BrokerURL)
		cfg.MQTT.Port = w.promptInt("Broker port", cfg.MQTT.Port)
	}

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\nConfiguration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, warn := range result.Warnings {
		log.Warn().Str("field", warn.Field).Msg(warn.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration saved to %s\n", cfg.Path())
	return nil
}

type wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

func (w *wizard) readLine() string {
	input, _ := w.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (w *wizard) promptString(prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(w.out, "  %s: ", prompt)
	}

	input := w.readLine()
	if input == "" {
		return defaultVal
	}
	return input
}

func (w *wizard) promptInt(prompt string, defaultVal int) int {
	fmt.Fprintf(w.out, "  %s [%d]: ", prompt, defaultVal)

	input := w.readLine()
	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(w.out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (w *wizard) promptBool(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultStr)

	input := strings.ToLower(w.readLine())
	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
