// Package staging owns the on-disk staging area: the incoming uploads
// directory and the processed outputs directory (which may be the same).
//
// Files are written to a temporary name and renamed into place, so readers
// never observe a partially written file. Callers serialize work on the same
// file name with Lock.
package staging
