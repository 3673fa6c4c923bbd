// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"rtl-testgen/pkg/registry"
)

var registryPath string

func main() {
	setCmd := flag.NewFlagSet("set", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{setCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/prompt-registry.json", "Path to registry file")
	}

	// Set command flags
	idSet := setCmd.String("id", "", "Prompt kind (synthesis, stream, validation, single_file)")
	displayName := setCmd.String("displayName", "", "Display Name")
	description := setCmd.String("description", "", "Description")
	system := setCmd.String("system", "", "System instruction text")
	systemFile := setCmd.String("systemFile", "", "Read the system instruction from this file")
	temperature := setCmd.String("temperature", "", "Sampling temperature override (0-2)")
	maxTokens := setCmd.Int("maxTokens", 0, "Max tokens override")
	version := setCmd.String("version", "1.0.0", "Version")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Prompt kind to update")
	field := updateCmd.String("field", "", "Field to update (system, temperature, maxTokens, version, displayName, description)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set":
		setCmd.Parse(os.Args[2:])
		if *idSet == "" || (*system == "" && *systemFile == "") {
			fmt.Println("Error: id and one of system or systemFile are required for set.")
			setCmd.Usage()
			os.Exit(1)
		}
		text := *system
		if *systemFile != "" {
			data, err := os.ReadFile(*systemFile)
			if err != nil {
				fmt.Printf("Error reading system file: %v\n", err)
				os.Exit(1)
			}
			text = string(data)
		}
		tmpl := registry.PromptTemplate{
			ID:          *idSet,
			DisplayName: *displayName,
			Description: *description,
			Version:     *version,
			System:      text,
			MaxTokens:   *maxTokens,
			Tags:        []string{},
		}
		if *temperature != "" {
			t, err := strconv.ParseFloat(*temperature, 64)
			if err != nil {
				fmt.Printf("Error: invalid temperature: %v\n", err)
				os.Exit(1)
			}
			tmpl.Temperature = &t
		}
		if err := setPrompt(tmpl); err != nil {
			fmt.Printf("Error setting prompt: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set prompt: %s\n", *idSet)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updatePrompt(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating prompt: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated prompt %s, field %s\n", *idUpdate, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadOrCreate() (*registry.PromptRegistry, error) {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &registry.PromptRegistry{Version: "1.0.0"}, nil
		}
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func setPrompt(tmpl registry.PromptTemplate) error {
	reg, err := loadOrCreate()
	if err != nil {
		return err
	}
	reg.Upsert(tmpl)
	return registry.SaveRegistry(reg, registryPath)
}

func updatePrompt(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	tmpl, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("prompt with ID %s not found", id)
	}

	switch field {
	case "system":
		tmpl.System = value
	case "version":
		tmpl.Version = value
	case "displayName":
		tmpl.DisplayName = value
	case "description":
		tmpl.Description = value
	case "temperature":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature value: %w", err)
		}
		tmpl.Temperature = &t
	case "maxTokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid maxTokens value: %w", err)
		}
		tmpl.MaxTokens = n
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.Upsert(tmpl)
	return registry.SaveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	for _, p := range reg.Prompts {
		if p.System == "" {
			return fmt.Errorf("prompt %s missing required field: system", p.ID)
		}
	}
	fmt.Printf("Registry validation passed. Found %d prompt overrides.\n", len(reg.Prompts))
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  set      Add or replace a prompt override
  update   Update one field of an existing override
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater set -id stream -systemFile prompts/stream.txt -temperature 0.1
  registry-updater update -id validation -field maxTokens -value 600
  registry-updater validate -path configs/prompt-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
