// Package secure implements the device-key channel used to protect
// credentials in transit.
//
// The device publishes an RSA public key (command public-key). Short secrets
// such as WiFi passwords are encrypted directly with it (RSA PKCS#1 v1.5).
// Longer payloads such as EAP-TLS private keys use hybrid encryption: 32
// bytes of fresh key material (AES-128 key followed by the CBC IV) are
// wrapped with the RSA key and the payload is encrypted with AES-128-CBC and
// PKCS#7 padding. All ciphertext travels hex-encoded.
package secure
