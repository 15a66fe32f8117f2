// package live pushes ranked queue snapshots to connected party members over websockets.
//
// Each client is registered under a party with the viewer it joined as. When the
// queue of a party changes, [Hub.Publish] renders one snapshot per client so the
// liked/disliked flags reflect that client's own markers.
package live
