/*
Package api defines the wire protocol of the delegate upgrade registry.

Messages are JSON and externally tagged: the envelope is an object with exactly
one key naming the variant.

	{"GetPreviousKey":{"namespace":null}}
	{"SetCurrentKey":{"namespace":"app","delegate_key":"<64 hex>","code_hash":"<64 hex>"}}

	{"PreviousKey":{"namespace":null,"delegate_key":null,"code_hash":null}}
	{"KeyUpdated":{"namespace":"app"}}

A namespace of null is the default namespace, which is distinct from every
string including "". Responses echo the request namespace unchanged.
PreviousKey carries both key fields or neither.

DecodeRequest is strict: unknown variants, unknown fields, missing keys, bad
hex and trailing data are all rejected with interfaces.ErrMalformedRequest.

The HTTP transport lives in api/migrationhandler.
*/
package api
