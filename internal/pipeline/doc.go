// Package pipeline runs the batch issuance pipeline: prepare items, register
// the collection, initialize the candy machine, and mint at a paced rate.
//
// Each stage is a small component with an explicit collaborator set (asset
// source, uploader, ledger client, checkpoint store). The Orchestrator
// sequences them through stageexec so every status change is persisted, and
// resumes an interrupted batch at its first unfinished stage.
//
// Every network call runs under the retry policy. Transactions that create
// accounts persist the new account keypair before submission; a resumed run
// adopts an account that already exists on chain instead of creating a
// second one.
package pipeline
