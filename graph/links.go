/*
 * Almond - A Load-Aware OpenFlow Controller
 *
 * Copyright (C) 2015-2019 Samjung Data Service, Inc. All rights reserved.
 *  Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package graph

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type linkEntry struct {
	From          uint64 `yaml:"from"`
	To            uint64 `yaml:"to"`
	Port          uint32 `yaml:"port"`
	Weight        uint64 `yaml:"weight"`
	Bidirectional bool   `yaml:"bidirectional"`
	ReversePort   uint32 `yaml:"reverse_port"`
}

type linkFile struct {
	Links []linkEntry `yaml:"links"`
}

// LoadLinks reads the static links declared in a YAML file.
func LoadLinks(path string) ([]Link, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the link file")
	}

	return ParseLinks(data)
}

// ParseLinks decodes the YAML document of a link file. A bidirectional entry
// produces the reverse link as well, using reverse_port as its egress port.
func ParseLinks(data []byte) ([]Link, error) {
	var file linkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to decode the link file")
	}

	result := make([]Link, 0, len(file.Links))
	for i, v := range file.Links {
		if v.From == 0 || v.To == 0 {
			return nil, errors.Errorf("link #%v: missing from or to", i)
		}
		if v.From == v.To {
			return nil, errors.Errorf("link #%v: self-loop on node %v", i, v.From)
		}
		result = append(result, Link{From: v.From, To: v.To, Port: v.Port, Weight: v.Weight, Static: true})
		if v.Bidirectional {
			result = append(result, Link{From: v.To, To: v.From, Port: v.ReversePort, Weight: v.Weight, Static: true})
		}
	}

	return result, nil
}
