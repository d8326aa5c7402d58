/*
 * nemu-mips32 - Machine description tests
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
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "machine.yml")
	if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestDefaultMachine(t *testing.T) {
	cfg := Default()
	if cfg.Entry != 0xbfc00000 {
		t.Errorf("entry got: %08x expected: bfc00000", cfg.Entry)
	}
	if len(cfg.Memory) != 2 {
		t.Fatalf("memory regions got: %d expected: 2", len(cfg.Memory))
	}
	if cfg.RTC == nil || *cfg.RTC != 0x10002000 {
		t.Error("default RTC address wrong")
	}
	if cfg.Serial == nil || *cfg.Serial != 0x10000000 {
		t.Error("default serial address wrong")
	}
	if cfg.DecodeCache == nil || !*cfg.DecodeCache {
		t.Error("decode cache not on by default")
	}
}

func TestLoadConfig(t *testing.T) {
	name := writeConfig(t, `
entry: 0xbfc00000
memory:
  - name: BRAM
    base: 0x1fc00000
    size: 0x100000
  - name: DDR
    base: 0x0
    size: 0x800000
serial: 0x10000000
debug: [INST, TLB]
`)
	cfg, err := Load(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Memory) != 2 || cfg.Memory[0].Name != "BRAM" {
		t.Errorf("memory got: %+v", cfg.Memory)
	}
	if cfg.Memory[1].Size != 0x800000 {
		t.Errorf("DDR size got: %x expected: 800000", cfg.Memory[1].Size)
	}
	if len(cfg.Debug) != 2 {
		t.Errorf("debug options got: %v", cfg.Debug)
	}
	// Unset fields fall back to defaults.
	if cfg.RTC == nil || *cfg.RTC != 0x10002000 {
		t.Error("RTC default not applied")
	}
	if cfg.DecodeCache == nil || !*cfg.DecodeCache {
		t.Error("decode cache default not applied")
	}
}

func TestLoadConfigBadRegion(t *testing.T) {
	name := writeConfig(t, `
memory:
  - name: BROKEN
    base: 0x0
`)
	if _, err := Load(name); err == nil {
		t.Error("region without size accepted")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("missing file accepted")
	}
}
