package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/remeh/sizedwaitgroup"
)

// Job is one file of a batch.
type Job struct {
	In, Out string
}

// Jobs lists the files in inDir that have an extension of the source format,
// each paired with a file of the same name in outDir with the extension of the
// target format. Jobs are sorted by input path.
func Jobs(inDir, outDir string, conv Conversion) ([]Job, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("could not list directory %v: %w", inDir, err)
	}
	var ret []Job
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !conv.From.Matches(name) {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		ret = append(ret, Job{
			In:  filepath.Join(inDir, name),
			Out: filepath.Join(outDir, base+conv.To.Extension()),
		})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].In < ret[j].In })
	return ret, nil
}

// Batch converts the jobs with at most workers conversions running at once.
// report is called once per job when it finishes, possibly from several
// goroutines at the same time. Batch returns the number of failed jobs.
func (c *Converter) Batch(jobs []Job, conv Conversion, workers int, report func(Job, Result, error)) int {
	if workers < 1 {
		workers = 1
	}
	swg := sizedwaitgroup.New(workers)
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		swg.Add()
		go func() {
			defer swg.Done()
			res, err := c.ConvertFile(job.In, job.Out, conv)
			errs[i] = err
			if report != nil {
				report(job, res, err)
			}
		}()
	}
	swg.Wait()
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	return failed
}
