// Package actions provides the container operations behind docker-monitor's API.
// It classifies containers by comparing local and remote image digests, recreates containers
// with freshly pulled images, and cleans up dangling images.
//
// Key components:
//   - Classifier: Classify and ClassifyAll produce a types.UpdateStatus per container.
//   - ImageReference: Reference a container's image is looked up by.
//   - Recreator: Update pulls, stops, removes, recreates, reconnects and starts a container.
//   - UnusedImages, PruneUnusedImages: Dangling image listing and removal.
//
// Usage example:
//
//	classifier := actions.NewClassifier(digestCache, actions.DefaultWorkers, metrics.Default())
//	statuses := classifier.ClassifyAll(ctx, containers, false)
//	recreator := actions.NewRecreator(client, classifier, actions.RecreatorOptions{SelfName: self})
//	result, err := recreator.Update(ctx, "web")
//	if errors.Is(err, actions.ErrSelfUpdate) {
//	    logrus.Warn("Refused to update own container")
//	}
//
// Recreation is not transactional. Failures after the old container was removed are reported
// but not rolled back.
package actions
