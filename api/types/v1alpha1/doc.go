// Package v1alpha1 contains the wire types shared by lexd, its page
// collector and lexctl.
package v1alpha1
