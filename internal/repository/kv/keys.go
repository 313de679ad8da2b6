package kv

import "fmt"

// Key layout mirrors the realtime tree the client was written against:
//
//	chatrooms/<room>
//	messages/<room>/<message>
//	idx/messages/<room>/<ts:020d>/<message>   ordering index, empty value
//	users/<user>/rooms/<room>
const (
	roomsPrefix = "chatrooms/"
	tsPadWidth  = 20
)

func roomKey(roomID string) []byte {
	return []byte(roomsPrefix + roomID)
}

func messageKey(roomID, messageID string) []byte {
	return []byte("messages/" + roomID + "/" + messageID)
}

func indexPrefix(roomID string) string {
	return "idx/messages/" + roomID + "/"
}

func indexKey(roomID string, ts int64, messageID string) []byte {
	return []byte(fmt.Sprintf("%s%0*d/%s", indexPrefix(roomID), tsPadWidth, ts, messageID))
}

// indexBound is the exclusive upper bound for entries older than ts.
func indexBound(roomID string, ts int64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", indexPrefix(roomID), tsPadWidth, ts))
}

func settingKey(userID, roomID string) []byte {
	return []byte("users/" + userID + "/rooms/" + roomID)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p string) []byte {
	end := []byte(p)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// messageIDFromIndex extracts the message id from an index key.
func messageIDFromIndex(roomID string, key []byte) string {
	rest := key[len(indexPrefix(roomID)):]
	if len(rest) <= tsPadWidth+1 {
		return ""
	}
	return string(rest[tsPadWidth+1:])
}
