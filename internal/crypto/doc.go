// Package crypto provides the cryptographic transforms used by the Rubika
// wire protocol. Every function here reproduces an externally fixed format;
// changing padding, IV handling or key derivation breaks interoperability.
//
// # Algorithm Suite
//
//   - AES-256-CBC with an all-zero IV and PKCS#7 padding for RPC payloads,
//     push frames and the at-rest session file. The AES key is never the raw
//     auth key: it is the phrase returned by [DerivePhrase].
//
//   - RSA-1024 keypairs generated once per login attempt. Requests made with
//     the long-lived key are signed with PKCS#1 v1.5 over SHA-256 of the
//     encrypted payload ([Sign]). The server delivers the long-lived auth key
//     encrypted with RSA-OAEP (SHA-1) to the generated public key
//     ([DecryptOAEP]).
//
// # Phrase Transforms
//
// Two unrelated per-character transforms exist:
//
//   - [DerivePhrase] reorders the four 8-byte segments of a 32-byte key as
//     c‖a‖d‖b, then rotates digits by 5 and lowercase letters by 9. The
//     result is the AES key.
//
//   - [InvertPhrase] rotates lowercase, uppercase and digits around fixed
//     pivots (32, 29 and 13). It produces the wire form of the auth key and
//     of the generated public key. Applying it twice returns the input.
//
// # Base64 Encoding
//
// All ciphertexts and signatures use standard base64 with padding. Decoding
// also accepts unpadded input.
package crypto
