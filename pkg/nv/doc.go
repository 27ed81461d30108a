/*
Package nv implements the attribute codec shared by the control socket
and the private daemon-to-worker channels.

A Message is an ordered list of named, typed attributes. Names are
unique within a message. Values are one of uint8, uint16, uint32,
uint64, int16 or string, and every value carries its type tag on the
wire, so a getter asked for the wrong type reports "not present"
instead of converting.

# Repeated fields

The protocol has no array type. Lists are spelled with a numeric
suffix, "resource0", "resource1" and so on, and end at the first
missing index:

	msg := nv.New()
	msg.AddUint8("cmd", 2)
	msg.AddString(nv.Key("resource", 0), "data0")
	msg.AddString(nv.Key("resource", 1), "data1")

	names := msg.Strings("resource") // [data0 data1]
	role, ok := msg.GetStringAt("role", 1)

# Wire format

A message is encoded as one CBOR array of [name, type, value] triples:

	[
	  ["cmd",       1, 2],
	  ["resource0", 6, "data0"]
	]

CBOR items are self-delimiting, so a stream socket carries consecutive
messages without extra framing; Decoder reads them one at a time.
Decoding validates every triple: unknown type tags, values that do not
fit their tag, duplicate names and empty names make the whole message
ErrMalformed.

# Errors while building

Adders never fail individually. The first problem (a duplicate or empty
name) is recorded and later adds are ignored; Encode refuses such a
message and Err reports the cause. This keeps response construction
linear and moves the single failure check to the end.
*/
package nv
