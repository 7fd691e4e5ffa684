package visionedge

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadLabels reads the labels used to train the Model from the given text file.
// It should contain one label per line, blank lines are skipped.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	labels := make([]string, 0)

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}

// LabelFor returns the label of classID or the numeric id as a string if the
// id has no entry in labels
func LabelFor(labels []string, classID int) string {

	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}

	return strconv.Itoa(classID)
}
