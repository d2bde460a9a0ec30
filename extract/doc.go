// Package extract turns uploaded documents into plain text.
//
// PDFs are converted with poppler's pdftotext, which must be on PATH (or set
// via Config.Pdftotext). Plain text and Markdown files are read as-is. The
// external command runs behind the Runner interface so tests can stub it.
package extract
