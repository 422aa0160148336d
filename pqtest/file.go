package pqtest

import (
	"os"
	"path/filepath"

	arrowfile "github.com/apache/arrow/go/v10/parquet/file"
	"github.com/segmentio/parquet-go"
)

// Row is the fixture schema used by tests across the repository.
type Row struct {
	SeriesID int64
	Label    string `parquet:",dict"`
	Value    float64
}

var Columns = []string{"SeriesID", "Label", "Value"}

// WritePart writes a parquet part to dir: the data file plus the sidecar
// footer metadata file, with one row group per batch.
func WritePart(dir, name string, batches [][]Row) error {
	dataPath := filepath.Join(dir, name+".parquet")
	if err := writeDataFile(dataPath, batches); err != nil {
		return err
	}
	return writeMetadataFile(dataPath, filepath.Join(dir, name+".metadata"))
}

func writeDataFile(path string, batches [][]Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[Row](f)
	for _, rows := range batches {
		if _, err := writer.Write(rows); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return writer.Close()
}

func writeMetadataFile(dataPath, metadataPath string) error {
	f, err := os.Open(dataPath)
	if err != nil {
		return err
	}
	pqReader, err := arrowfile.NewParquetReader(f)
	if err != nil {
		return err
	}
	defer pqReader.Close()

	metaFile, err := os.Create(metadataPath)
	if err != nil {
		return err
	}
	if _, err := pqReader.MetaData().WriteTo(metaFile, nil); err != nil {
		return err
	}
	return metaFile.Close()
}
