/*
 * nemu-mips32 - Machine description file
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package machine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MemRegion describes one RAM device on the physical bus.
type MemRegion struct {
	Name string `yaml:"name"`
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
}

// Config is the machine description. Memory and device addresses are
// physical; Entry is the virtual address the CPU starts at. YAML hex
// literals (0x...) are accepted.
type Config struct {
	Entry       uint32      `yaml:"entry"`
	Memory      []MemRegion `yaml:"memory"`
	RTC         *uint32     `yaml:"rtc"`
	Serial      *uint32     `yaml:"serial"`
	DecodeCache *bool       `yaml:"decodecache"`
	Segment     bool        `yaml:"segment"`
	Frames      bool        `yaml:"frames"`
	Debug       []string    `yaml:"debug"`
	DebugFile   string      `yaml:"debugfile"`
}

func addrOf(v uint32) *uint32 {
	return &v
}

// Default returns the stock machine: boot BRAM behind the reset
// vector, 128 MiB of DDR, RTC and console UART at their usual spots.
func Default() *Config {
	yes := true
	return &Config{
		Entry: 0xbfc00000,
		Memory: []MemRegion{
			{Name: "DDR", Base: 0x00000000, Size: 128 * 1024 * 1024},
			{Name: "BRAM", Base: 0x1fc00000, Size: 1024 * 1024},
		},
		RTC:         addrOf(0x10002000),
		Serial:      addrOf(0x10000000),
		DecodeCache: &yes,
	}
}

// Load reads a machine description, filling unset fields from the
// defaults.
func Load(name string) (*Config, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("machine config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("machine config %s: %w", name, err)
	}

	def := Default()
	if cfg.Entry == 0 {
		cfg.Entry = def.Entry
	}
	if len(cfg.Memory) == 0 {
		cfg.Memory = def.Memory
	}
	if cfg.RTC == nil {
		cfg.RTC = def.RTC
	}
	if cfg.Serial == nil {
		cfg.Serial = def.Serial
	}
	if cfg.DecodeCache == nil {
		cfg.DecodeCache = def.DecodeCache
	}

	for _, m := range cfg.Memory {
		if m.Size == 0 {
			return nil, fmt.Errorf("machine config %s: memory region %s has no size", name, m.Name)
		}
	}
	return cfg, nil
}
