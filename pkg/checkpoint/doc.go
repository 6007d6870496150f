// Package checkpoint makes harvested results durable.
//
// A Checkpointer writes every result to a staging JSON-lines file the moment
// it is produced. Periodically the orchestrator calls Flush with its Buffer,
// which appends the buffered records to the metadata store and the skips to
// the skipped store, then ClearStaging. The stores are append-only; a post
// URL joins the live processed set only once its record has been flushed.
//
// The run Manifest records one run against one profile: a uuid run id, the
// candidate and outstanding counts, running totals and a final status. It is
// rewritten atomically and read back by the status command.
//
// Usage:
//
//	cp := checkpoint.New(checkpoint.Paths{
//	    Metadata: cfg.Data.MetadataPath,
//	    Skipped:  cfg.Data.SkippedPath,
//	    Staging:  cfg.Data.TmpPath,
//	}, processed)
//
//	cp.AppendIntermediate(record)
//	buf.AddRecord(record)
//	if err := cp.Flush(&buf); err == nil {
//	    cp.ClearStaging()
//	}
package checkpoint
