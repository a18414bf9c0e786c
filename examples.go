package main

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

var exampleTexts = map[string]string{
	"quote": "The best way to predict the future is to invent it. " +
		"Anything you can imagine is worth trying at least once.",
	"paragraph": "The lighthouse keeper climbed the spiral stairs every evening at dusk. " +
		"From the lamp room he could see the whole bay, the fishing boats turning for home, " +
		"and the first stars coming out over the cliffs. " +
		"He wound the clockwork, trimmed the wick, and wrote a single line in the logbook. " +
		"Most nights the line said the same thing: calm sea, light burning, all is well.\n" +
		"In forty years he had missed only one evening. " +
		"That was the night of the great storm, when the door blew in and the stairs ran with water. " +
		"He still climbed them the next morning, soaked and shaking, to find the lamp had kept burning on its own.",
}

var randomSentences = []string{
	"A gentle breeze carried the smell of rain across the empty field.",
	"Every morning the baker opened the shutters before the sun came up.",
	"The train pulled out of the station exactly three minutes late.",
	"She found an old map folded inside the cover of a library book.",
	"Somewhere in the city a saxophone was playing a slow, sad tune.",
	"The cat watched the snow fall from the warm side of the window.",
}

// exampleNames lists the accepted --example values.
func exampleNames() []string {
	names := []string{"random"}
	for name := range exampleTexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func exampleText(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "random" {
		return randomSentences[rand.IntN(len(randomSentences))], nil //nolint:gosec
	}
	text, ok := exampleTexts[name]
	if !ok {
		return "", fmt.Errorf("unknown example %q: use one of %s", name, strings.Join(exampleNames(), ", "))
	}
	return text, nil
}
