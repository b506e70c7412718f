// Package ssm stores join material in AWS Systems Manager Parameter Store.
//
// Secret-bearing parameters are written as SecureString (optionally with a
// customer managed KMS key); the endpoint is a plain String. Reads always
// request decryption.
package ssm
