/*
Package dsl provides a fluent builder for programmatically constructing
constellations.

It lets developers define workflow graphs with type-safe Go instead of
external YAML or JSON files, which is useful for dynamic graph generation,
unit tests, and IDE autocompletion. Build validates the finished graph the
same way a save over the API would, so a graph that builds is a graph that
runs.

Example usage:

	package main

	import (
		"github.com/rishimeka/astro/pkg/dsl"
	)

	func main() {
		b := dsl.New("review-loop", "Review loop")

		b.Add("draft").
			Worker("Draft an answer for: {{input}}").
			Go("review")

		b.Add("review").
			Eval("Is this answer complete? {{input}}").
			Continue(dsl.EndID).
			Loop("draft")

		b.Entry("draft")

		c, err := b.Build()
		if err != nil {
			panic(err)
		}
		// ... save c with astro.App.SaveConstellation or run it directly
		_ = c
	}
*/
package dsl
