package service

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

const missingCommandMessage = "execute-snowflake dont have command or command_file"

// LoadCommand returns the SQL text of the invocation, read from
// p.CommandFile when no inline command is given.
func LoadCommand(p Params) (string, error) {
	if p.Command != "" {
		return p.Command, nil
	}
	if p.CommandFile == "" {
		return "", withKind(ErrMissingCommand, errors.New(missingCommandMessage))
	}
	data, err := os.ReadFile(p.CommandFile)
	if err != nil {
		return "", withKind(ErrCommandFile, fmt.Errorf("Load SQLFile: %w", err))
	}
	return string(data), nil
}

// PrepareQuery replaces every ":key" in query with the value of args[key].
// Values are inserted verbatim, without quoting. Longer keys are replaced
// first so ":dayname" is not consumed by ":day".
func PrepareQuery(query string, args map[string]any) string {
	if len(args) == 0 {
		return query
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		query = strings.ReplaceAll(query, ":"+k, fmt.Sprint(args[k]))
	}
	return query
}
