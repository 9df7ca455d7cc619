// Cube rover - CLI for driving, scripting, recording and replaying a rover
// on the surface of a cube.
package main

import (
	"github.com/iaimans/mars-rover-ai-jam/internal/cli"
)

func main() {
	cli.Execute()
}
