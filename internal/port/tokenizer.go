package port

// Tokenizer maps text to sub-token ids and back. Implementations must
// reserve a begin/end/mask/pad id plus 100 marker ids addressable as
// slots 0..99, and Decode must tolerate arbitrary id sequences.
type Tokenizer interface {
	Encode(text string) []int
	// Decode renders ids back to text, skipping special ids. It never
	// fails, whatever the input.
	Decode(ids []int) string

	BOS() int
	EOS() int
	Mask() int
	Pad() int

	// MarkerID returns the reserved id for marker slot 0..99.
	MarkerID(slot int) int
	// MarkerSlot reports whether id is a marker and which slot it is.
	MarkerSlot(id int) (slot int, ok bool)
}
