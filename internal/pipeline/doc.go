// Package pipeline sequences the download, concat and build stages.
//
// Stages share no hidden state: the *summary.Run passed to Run is the only
// accumulator, and completion of earlier work is detected from the files on
// disk, so any stage can be re-run on its own. A failing group is recorded
// and skipped; concat and build failures end the run.
package pipeline
