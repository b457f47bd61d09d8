package reideval

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Label is the ground truth attached to every query and gallery item
type Label struct {
	// PersonID is the identity of the person in the image
	PersonID int `json:"person_id" yaml:"person_id"`
	// CameraID is the camera the image was captured from
	CameraID int `json:"camera_id" yaml:"camera_id"`
}

// LoadLabels reads the person and camera labels of all items from the given
// text file.  It should contain one "person_id camera_id" pair per line, queries
// first followed by the gallery, in the same order as the features.  Blank
// lines and lines starting with # are skipped.
func LoadLabels(file string) ([]Label, error) {

	lines, err := readLines(file)

	if err != nil {
		return nil, err
	}

	labels := make([]Label, 0, len(lines))

	for _, ln := range lines {

		fields := strings.FieldsFunc(ln.text, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})

		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected person and camera id, got %q",
				ln.num, ln.text)
		}

		pid, err := strconv.Atoi(fields[0])

		if err != nil {
			return nil, fmt.Errorf("line %d: parsing person id: %w", ln.num, err)
		}

		camid, err := strconv.Atoi(fields[1])

		if err != nil {
			return nil, fmt.Errorf("line %d: parsing camera id: %w", ln.num, err)
		}

		labels = append(labels, Label{PersonID: pid, CameraID: camid})
	}

	return labels, nil
}

// LoadItems reads the item list, one image path per line, used when features
// are extracted by an Embedder rather than loaded from a feature file
func LoadItems(file string) ([]string, error) {

	lines, err := readLines(file)

	if err != nil {
		return nil, err
	}

	items := make([]string, len(lines))

	for i, ln := range lines {
		items[i] = ln.text
	}

	return items, nil
}

type line struct {
	num  int
	text string
}

// readLines returns the trimmed, non blank, non comment lines of a file
func readLines(file string) ([]line, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var lines []line
	num := 0

	for scanner.Scan() {
		num++
		text := strings.TrimSpace(scanner.Text())

		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		lines = append(lines, line{num: num, text: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return lines, nil
}
