package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BoardFile is the YAML layout of BOARD_FILE:
//
//	stations:
//	  - id: "9021014001760000"
//	    name: Brunnsparken
type BoardFile struct {
	Stations []Station `yaml:"stations"`
}

func LoadBoardFile(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board file: %w", err)
	}

	var file BoardFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing board file: %w", err)
	}

	for i, station := range file.Stations {
		if station.ID == "" {
			return nil, fmt.Errorf("board file station %d has no id", i)
		}
	}
	return file.Stations, nil
}
