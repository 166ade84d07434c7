// Command vignetted runs the Vignette digest daemon and the queue and
// configuration tooling around it.
package main
