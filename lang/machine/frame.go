package machine

// frame records one active function call (§4.5.1).
type frame struct {
	functionAddress uint32
	returnAddress   uint32
	stackBase       int
	name            string
}
