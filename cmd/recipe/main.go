package main

import "github.com/goplus/theora-recipe/cmd/recipe/internal"

func main() {
	internal.Execute()
}
