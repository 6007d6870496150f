// Package storage provides the file primitives every durable store builds on.
//
// The JSON helpers cover the two on-disk shapes used by a run:
//   - JSON-lines files that are only ever appended to (metadata, skips, staging)
//   - whole JSON documents replaced atomically (candidate list, run manifest)
//
// Appends are synced before returning, and whole-file writes go through a
// temporary file in the target directory followed by a rename.
//
// The Manager type stores downloaded post media as
// <media_dir>/<post_id>/media_NN<ext>. It scans the directory on startup so
// a rerun does not fetch files that are already present.
//
// Usage:
//
//	if err := storage.AppendJSONLines(path, record); err != nil {
//	    return err
//	}
//
//	media, err := storage.NewManager(mediaDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key := storage.MediaKey(postID, 0)
//	if !media.IsDownloaded(key) {
//	    path, err := media.SaveMedia(body, key, ".jpg")
//	    ...
//	}
package storage
