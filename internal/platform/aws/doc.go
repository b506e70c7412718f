// Package aws adapts EC2 facilities to the handshake: instance identity
// from IMDSv2 and coordinator discovery by instance tag.
package aws
