// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package verification connects the activation gate to the external services
that check a student's identity.

# Collaborators

Three narrow interfaces stand in for the outside world:

  - ObjectStore keeps uploaded PDFs and face captures and returns a URL
  - DocumentReader extracts the text of a stored PDF
  - FaceMatcher detects, searches and enrols faces

StorageClient, DocumentClient and FaceClient implement them over JSON HTTP
APIs. GuardStore, GuardReader and GuardMatcher put a circuit breaker in front
of each one; a tripped breaker fails fast with ErrUpstream.

# Workflow

Service.SubmitDocument checks that the upload is a PDF within the size limit,
stores it, and requires the extracted text to contain the matriculation
number and every name part longer than two characters. Service.SubmitFace
requires a verified document, rejects images without a face or with a face
already enrolled for another student, enrols the face as
"<matric>@<namespace>" and activates the account.

Any collaborator failure returns an error wrapping ErrUpstream and leaves the
account flags exactly as they were.
*/
package verification
