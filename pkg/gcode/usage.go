/*
 * Copyright 2025 Nolop Makerspace.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gcode extracts slicer metadata from uploaded print files.
package gcode

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// maxHeaderLines bounds how much of the stream is scanned; slicer usage
// comments sit at the top of the file and sliced files can be large.
const maxHeaderLines = 100

// filamentRe matches lines like "; filament used [mm] = 1234.56" at the
// start of a trimmed line.
var filamentRe = regexp.MustCompile(`^;\s*filament used \[([^\]]+)\]\s*=\s*([0-9.+\-eE]+)`)

// ExtractFilamentUsage scans the leading header comments of a sliced file
// and returns the predicted filament usage keyed by unit token ("mm", "g",
// "cm3", ...). The last match per unit wins. Lines that do not match, or
// whose number fails to parse, are skipped; an empty map means no usage
// comments were found. When the reader supports seeking, the position is
// restored to the start on a best-effort basis so callers can re-read.
func ExtractFilamentUsage(r io.Reader) map[string]float64 {
	usage := make(map[string]float64)

	scanner := bufio.NewScanner(r)

	for i := 0; i < maxHeaderLines && scanner.Scan(); i++ {
		m := filamentRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}

		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		usage[strings.TrimSpace(m[1])] = value
	}

	if seeker, ok := r.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}

	return usage
}
