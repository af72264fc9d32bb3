package badger

const (
	documentPrefix = "emldoc:"
	collectionKey  = "emlcol"
)

func makeDocumentKey(id string) []byte {
	buf := make([]byte, len(documentPrefix)+len(id))
	offset := copy(buf, documentPrefix)
	copy(buf[offset:], id)
	return buf
}
