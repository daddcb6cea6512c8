package keyspace

import "strconv"

func simpleString(s string) []byte {
	return append([]byte("+"+s), '\r', '\n')
}

func errorReply(msg string) []byte {
	return append([]byte("-ERR "+msg), '\r', '\n')
}

func integer(n int) []byte {
	return append([]byte(":"+strconv.Itoa(n)), '\r', '\n')
}

func nilBulk() []byte {
	return []byte("$-1\r\n")
}

func bulkString(b []byte) []byte {
	out := append([]byte("$"+strconv.Itoa(len(b))+"\r\n"), b...)
	return append(out, '\r', '\n')
}
