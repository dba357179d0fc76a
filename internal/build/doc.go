// Package build runs the render pass: it walks a page tree in traversal
// order, renders every page through the host templates and writes the
// results below the output directory, mirroring the folder structure.
//
// By default the pass stops at the first failing page. Files written before
// the failure stay in place; there is no rollback. WithContinueOnError keeps
// going and returns every page failure joined into one error.
package build
